// Package workflow implements the OKR approval lifecycle as a finite state
// machine gated by the policy engine.
//
// Every instance starts in StateDraft and moves through expert review and
// manager approval to StateActive; an active workflow can be reopened, which
// sends it back through review. The transition table is fixed:
//
//	DRAFT            --workflow:submit-->  REVIEW
//	REVIEW           --workflow:return-->  DRAFT
//	REVIEW           --workflow:review-->  MANAGER_APPROVAL
//	MANAGER_APPROVAL --workflow:return-->  REVIEW
//	MANAGER_APPROVAL --workflow:approve--> ACTIVE
//	ACTIVE           --workflow:reopen-->  RETURNED
//	RETURNED         --workflow:submit-->  REVIEW
//
// Advance authorizes the acting user against the policy engine before touching
// the instance; a denied or invalid transition leaves state and history
// untouched. Every applied transition appends exactly one history entry, and
// history is append-only.
//
// The engine holds instances in process memory. Durable deployments persist
// instance and history rows through pkg/store and replay them into a fresh
// engine at start.
package workflow

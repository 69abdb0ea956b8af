// Package models defines the core domain models for Kudos.
//
// # Rows
//
// The following models mirror one table each:
//   - User: a profile created on first sign-in
//   - Group: a private praise group with an owner, an invite code and a cooldown policy
//   - Membership: one stint of a user in a group; leaving closes the row, re-joining opens a new one
//   - PraiseMessage: a single praise from a sender to a receiver
//   - CooldownRecord: the last praise time for an ordered (sender, receiver) pair in a group
//
// # Listing models
//
// GroupSummary, GroupPreview, MemberSummary and PraiseEntry are read models
// built by explicit aggregate queries. They are never written back.
//
// # Design Principles
//
// 1. **IDs, not pointers**: relationships are ID strings
// 2. **Typed aggregates**: counts are fields filled by the store, not inferred at the edge
// 3. **Times are UTC**: stores persist Unix milliseconds and return UTC times
package models

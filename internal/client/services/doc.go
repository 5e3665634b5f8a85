// Package services contains the application services of the vaxtrack client:
// the offline-sync core and the online flows that write single fields back
// to the local cache.
//
//   - SyncService snapshots every collection of one user into the cache.
//   - SelectionResolver decides which baby is active and persists the choice.
//   - DedupTracker remembers which notifications were already surfaced.
//   - NotificationWatcher turns live notification snapshots into pushes.
//   - ReminderService classifies milestones from either source.
//   - SessionService gates online login, offline launch and logout.
//   - BabyService and AppointmentService perform the online mutations.
//
// Every service reads and writes the cache through cache.Cache, so writes to
// one namespace never interleave.
package services

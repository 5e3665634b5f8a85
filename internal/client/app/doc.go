// Package app wires the offline-sync core into a long running client.
//
// The client starts from the local cache alone (see App.Launch), then an
// online watcher probes the remote store every OnlineCheckInterval. Entering
// online mode logs the user in, snapshots all of their data and subscribes
// to notifications; leaving it cancels the subscription. While online the
// snapshot is refreshed every SyncInterval. Reminders are computed from the
// remote store when online and from the cache otherwise.
package app

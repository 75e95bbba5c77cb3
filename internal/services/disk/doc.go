// Package disk lists, resolves, and deletes remote video files through a
// Yandex Disk style REST API.
//
// Failures are tagged with the services sentinel taxonomy so the publish
// pipeline can retry transient ones and surface the rest.
package disk

// Command jellybridge migrates a Jellyfin deployment onto a new instance:
// user accounts and password hashes, library definitions, device
// registrations, and per-user watch state.
package main

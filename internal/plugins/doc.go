// Package plugins holds the plugins shipped with raindrop and the
// provider that constructs them by name.
//
// Plugins:
//   - test: does nothing; used to exercise the plugin lifecycle
//   - feed: registers the Feeds type and polls a feed URL on a schedule
package plugins

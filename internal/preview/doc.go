// Package preview derives short plain-text previews from markdown message
// content for sidebar and notification surfaces.
package preview

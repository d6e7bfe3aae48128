// Package branding holds the product name and startup banner art.
package branding

// AppName is the user-facing product name.
const AppName = "KOTH"

// Banner is printed by the service on startup unless disabled.
const Banner = `
 _  __  ___ _____ _   _
| |/ / / _ \_   _| | | |
| ' / | | | || | | |_| |
| . \ | |_| || | |  _  |
|_|\_\ \___/ |_| |_| |_|
`

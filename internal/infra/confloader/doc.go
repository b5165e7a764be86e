// Package confloader loads layered configuration with koanf and watches
// configuration files for changes.
//
// Sources, later overriding earlier:
//
//  1. Maps supplied by the caller (defaults, flags)
//  2. The configuration file (JSON, or YAML by extension)
//  3. Environment variables carrying the HOSTGATE_ prefix
//
// Keys are split on "/" rather than "." because hostgate configuration
// uses hostnames as map keys.
package confloader

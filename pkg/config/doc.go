// Package config centralizes configuration for every Mechaway component:
// execution limits, the HTTPClient node's zero-trust network policy, script
// sandbox limits, table-node limits, storage location and server bind
// address.
//
// Default returns secure production defaults; Development relaxes the
// network policy for local workflow authoring; FromEnv layers MECHAWAY_*
// environment variables on top of Default.
package config

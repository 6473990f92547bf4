// Package config handles loading and validating lutronbond configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with LUTRONBOND_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Device mappings live under each bridge. A source integration id maps to
// targets per integration, and every integration key accepts one target or
// a list:
//
//	lutron:
//	  bridges:
//	    - address: 192.168.1.20
//	      devices:
//	        21:
//	          name: Master Bedroom Fan Light
//	          bond:
//	            device_id: 6409d2a2
//	            actions: *fan_light
//
// Security Considerations:
//   - Credentials and tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

// Package config provides the recorder configuration value object and its
// loading, validation and hot reload.
//
// Configuration is read from a YAML file with spf13/viper. Every key can be
// overridden from the environment with the WIRETAP_ prefix, using "_" for
// nesting:
//
//	WIRETAP_MAXREQUESTCOUNT=250
//	WIRETAP_STORAGE_BACKEND=sqlite
//	WIRETAP_CAPTURE_EXCLUDEHOSTS=localhost,*.internal
//
// A minimal file:
//
//	maxRequestCount: 100
//	maxBodySize: 1048576
//	storage:
//	  backend: file
//	capture:
//	  excludeHosts: ["localhost"]
//	  when: 'method != "OPTIONS"'
//
// Applying a new configuration affects subsequent operations only; bodies
// already stored are not truncated again.
package config

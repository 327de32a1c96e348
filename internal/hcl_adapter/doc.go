// Package hcl_adapter loads the server configuration from HCL files.
//
// A configuration file looks like:
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//
//	server {
//	  addr  = ":8080"
//	  graph = "sprint-12"
//	}
//
//	storage "badger" {
//	  path = "${env.HOME}/.flowcanvas"
//	}
//
//	task "T-1" {
//	  title    = "Write docs"
//	  group    = "Docs"
//	  priority = "high"
//	  done     = true
//	}
//
// Every block is optional. Attributes left out keep the values of
// config.Default. The process environment is available as env.NAME.
package hcl_adapter

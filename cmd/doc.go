// Package cmd provides the command-line interface for seedling.
//
// # Available Commands
//
//   - serve: run the rendering HTTP server
//   - render: render one page to stdout or a file
//   - check: boot a rendered page the way the browser would
//   - init: scaffold a project with a sample module
//   - config: show or validate the resolved configuration
//   - version: print build information
//
// # Command Examples
//
//	// Serve with a data source
//	SEEDLING_DATA_SOURCE_BASE_URL=https://data.example.com seedling serve --port 3000
//
//	// Render a page in German
//	seedling render /docs --lang de
//
//	// Check that a served page hydrates
//	seedling check http://localhost:8080/docs
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (SEEDLING_*)
//  3. Configuration file (.seedling.yml)
//  4. Default values (lowest priority)
package cmd

// Package internal contains the implementation packages of seedling.
//
// # Package Organization
//
// The render pipeline, bottom-up:
//
//   - page: render options, component props and the embedded payload
//   - datasource: HTTP client components fetch from while suspended
//   - harvest: settles suspended renders and snapshots their values as seeds
//   - renderer: shell and content rendering stages
//   - compositor: places content into the shell's anchor element
//   - pipeline: runs the stages and the failure recovery path
//   - loader: compiles page modules and caches them
//   - client: replays the browser boot against a rendered page
//
// Around it:
//
//   - components: default shell and front-end templ components
//   - config, logging, errors, metrics, version: ambient stack
//   - watcher: reloads modules when their files change
//   - middleware, server: the HTTP collaborator
//   - services: what the CLI commands run
//
// # Request Flow
//
// A page request passes the middleware chain, negotiates the preferred
// language, loads the module (cached until its directory changes), and runs
// the pipeline. A failed content render still produces a document: the
// shell with a diagnostic block, sent with the error's status.
package internal

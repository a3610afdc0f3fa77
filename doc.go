// Package lumen is a structured logging facility with a JSON file sink and a
// colorized console sink.
//
// Each log call produces one JSON object per line in the file sink and a
// short human-readable line on the console. Records carry the call site
// (module, function, line), the fields of the active context scope, and any
// call-site key/value pairs.
//
// Context fields travel on a context.Context so concurrent goroutines never
// observe each other's scopes:
//
//	ctx = lumen.WithFields(ctx, lumen.Fields{"user_id": "u1"})
//	log.Info(ctx, "user logged in", "action", "login")
//
// A correlation id is generated for the outermost scope and inherited by
// nested ones.
//
// Timing wraps an operation and emits a single duration record on every
// exit path, including error returns and panics:
//
//	done := log.Timer(ctx, "database_query")
//	defer done(&err)
//
// The file sink rotates by size, keeping a bounded number of numeric-suffix
// backups (optionally gzip-compressed). Sink write failures are reported
// once to the alternate sink and then dropped with a rate-limited warning;
// a log call never returns or raises an error to the application.
package lumen

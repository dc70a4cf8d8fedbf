// Package logx configures slacklog's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional notification Sink that receives a record.Event for every
//     line at or above a minimum level (the error notifier plugs in here)
//
// Loggers obtained via NoNotify never reach the Sink, so the notifier can log
// its own failures without feeding them back into itself.
package logx

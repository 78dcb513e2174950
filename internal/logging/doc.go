// Package logging provides a simple leveled logging interface for the
// clipstream ingestion service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including ffmpeg stderr
//   - INFO: Job lifecycle and server events
//   - WARN: Recoverable problems such as failed cleanup
//   - ERROR: Failed jobs and infrastructure errors
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Messages that belong to a single
// ingestion job can be tagged with the job ID through ForJob.
package logging

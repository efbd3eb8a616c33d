// Package app assembles the sales data server: configuration, the shared
// logger, OpenTelemetry providers, the service layer, and the chi router,
// bundled into an Application with graceful shutdown.
//
//	application, err := app.NewApplication()
//	if err != nil {
//		return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, drains in-flight requests, and
// flushes telemetry before returning. The package reports failures as
// errors and never calls os.Exit.
package app

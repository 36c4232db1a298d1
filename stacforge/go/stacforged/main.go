// stacforged runs the bulk transformation worker and its HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"go.stacforge.org/infra/go/sflog"
	"go.stacforge.org/infra/go/sflog/sflogimpl"
	"go.stacforge.org/infra/go/sflog/stdlogging"
	"go.stacforge.org/infra/go/sflog/tablelogging"
	"go.stacforge.org/infra/stacforge/go/config"
	"go.stacforge.org/infra/stacforge/go/service"
	"go.stacforge.org/infra/stacforge/go/workflows"
)

var (
	temporalHostPort = flag.String("temporal_host_port", "localhost:7233", "Address of the Temporal frontend.")
	namespace        = flag.String("namespace", "default", "Temporal namespace to run in.")
	taskQueue        = flag.String("task_queue", "stacforge", "Task queue the workflows and activities run on.")
	port             = flag.String("port", ":8000", "HTTP service address (e.g., ':8000')")
	workerOnly       = flag.Bool("worker_only", false, "Run the Temporal worker without the HTTP API.")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	if err := setupLogging(ctx); err != nil {
		sflog.Fatal(err)
	}
	defer sflogimpl.Flush()

	temporal, err := client.Dial(client.Options{
		HostPort:  *temporalHostPort,
		Namespace: *namespace,
	})
	if err != nil {
		sflog.Fatalf("Error connecting to Temporal at %s: %s", *temporalHostPort, err)
	}
	defer temporal.Close()

	activities, err := workflows.NewActivities()
	if err != nil {
		sflog.Fatal(err)
	}
	w := worker.New(temporal, *taskQueue, worker.Options{})
	workflows.Register(w, activities)
	if err := w.Start(); err != nil {
		sflog.Fatalf("Error starting worker: %s", err)
	}
	defer w.Stop()
	sflog.Infof("Worker started on task queue %s", *taskQueue)

	if *workerOnly {
		select {}
	}

	srv := service.New(temporal, *taskQueue)
	sflog.Infof("Ready to serve on %s", *port)
	sflog.Fatal(http.ListenAndServe(*port, srv.Router()))
}

// setupLogging installs the stderr logger and, when a logs storage account is
// configured, layers table log shipping on top of it.
func setupLogging(ctx context.Context) error {
	base := stdlogging.New(os.Stderr)
	account := config.LogsStorageAccount()
	if account == "" {
		sflogimpl.SetLogger(base)
		return nil
	}
	cld, err := config.GetCloud("")
	if err != nil {
		return err
	}
	cred, err := config.Credential()
	if err != nil {
		return err
	}
	serviceURL := fmt.Sprintf("https://%s.table.%s", account, cld.StorageSuffix)
	writer, err := tablelogging.NewEntityWriter(ctx, serviceURL, config.LogsTable(), cred)
	if err != nil {
		return err
	}
	sflogimpl.SetLogger(tablelogging.New(writer, base, config.TableLogsLevel()))
	sflog.Infof("Shipping logs to table %s at %s", config.LogsTable(), serviceURL)
	return nil
}

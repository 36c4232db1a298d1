// Package tablelogging implements sflogimpl.Logger and ships log records to
// an Azure Storage Table, one entity per record. Records are queued in
// process and written by a background goroutine so that logging never blocks
// on the network; shipping failures are reported to stderr and never
// propagate to the caller.
//
// Table layout: PartitionKey is the orchestration id carried in the record's
// scope fields, RowKey is a content hash of the core columns. Scope field
// names are rewritten to PascalCase before shipping. A field name ending in
// "_override" replaces the base column of the same name, which lets wrappers
// spoof the Function/Module columns for decorated callables.
package tablelogging

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/iancoleman/strcase"

	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog/sflogimpl"
)

const (
	// MaxMessageLength is the longest message stored in a table entity.
	// Longer messages are cut to MaxMessageLength-3 runes plus "...".
	MaxMessageLength = 4096

	// queueSize bounds the in-process record queue. When full, records are
	// dropped with a stderr notice rather than blocking the logging call.
	queueSize = 1024

	retries       = 3
	retryInterval = 2 * time.Second
)

// overrideSuffix marks scope fields that replace a base column.
const overrideSuffix = "_override"

// EntityWriter writes one table entity. The aztables-backed implementation is
// returned by NewEntityWriter; tests inject fakes.
type EntityWriter interface {
	Upsert(ctx context.Context, partitionKey, rowKey string, properties map[string]interface{}) error
}

type aztablesWriter struct {
	client *aztables.Client
}

// NewEntityWriter returns an EntityWriter backed by the given table of the
// given table service endpoint, creating the table if it does not exist.
// Transient HTTP failures (408, 429, 5xx) are retried 3 times at a fixed
// 2 second interval by the underlying pipeline.
func NewEntityWriter(ctx context.Context, serviceURL, tableName string, cred azcore.TokenCredential) (EntityWriter, error) {
	opts := &aztables.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    retries,
				RetryDelay:    retryInterval,
				MaxRetryDelay: retryInterval,
			},
		},
	}
	svc, err := aztables.NewServiceClient(serviceURL, cred, opts)
	if err != nil {
		return nil, sferr.Wrapf(err, "creating table service client for %s", serviceURL)
	}
	if _, err := svc.CreateTable(ctx, tableName, nil); err != nil {
		// Already existing tables are fine.
		if !strings.Contains(err.Error(), "TableAlreadyExists") {
			return nil, sferr.Wrapf(err, "ensuring table %s", tableName)
		}
	}
	return &aztablesWriter{client: svc.NewClient(tableName)}, nil
}

// Upsert implements EntityWriter.
func (w *aztablesWriter) Upsert(ctx context.Context, partitionKey, rowKey string, properties map[string]interface{}) error {
	entity := aztables.EDMEntity{
		Entity: aztables.Entity{
			PartitionKey: partitionKey,
			RowKey:       rowKey,
		},
		Properties: properties,
	}
	b, err := json.Marshal(entity)
	if err != nil {
		return sferr.Wrap(err)
	}
	_, err = w.client.UpsertEntity(ctx, b, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	})
	return sferr.Wrap(err)
}

type tablelog struct {
	writer   EntityWriter
	base     sflogimpl.Logger
	minLevel sflogimpl.Severity

	queue chan entity
	wg    sync.WaitGroup
}

type entity struct {
	partitionKey string
	rowKey       string
	properties   map[string]interface{}
}

// New returns a sflogimpl.Logger that forwards every record to base and, for
// records at or above minLevel, ships an entity through writer. Callers
// should Flush before process exit to drain the queue.
func New(writer EntityWriter, base sflogimpl.Logger, minLevel sflogimpl.Severity) sflogimpl.Logger {
	t := &tablelog{
		writer:   writer,
		base:     base,
		minLevel: minLevel,
		queue:    make(chan entity, queueSize),
	}
	t.wg.Add(1)
	go t.ship()
	return t
}

func (t *tablelog) ship() {
	defer t.wg.Done()
	for e := range t.queue {
		if err := t.writer.Upsert(context.Background(), e.partitionKey, e.rowKey, e.properties); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to log to storage table: %v\n", err)
		}
	}
}

// Log implements sflogimpl.Logger.
func (t *tablelog) Log(r sflogimpl.Record) {
	if t.base != nil {
		fwd := r
		fwd.Depth++
		t.base.Log(fwd)
	}
	if r.Severity < t.minLevel {
		return
	}

	msg := fmt.Sprint(r.Args...)
	if r.Format != "" {
		msg = fmt.Sprintf(r.Format, r.Args...)
	}
	msg = Truncate(msg)

	module := "???"
	function := "???"
	if pc, file, _, ok := runtime.Caller(r.Depth + 2); ok {
		parts := strings.Split(file, "/")
		module = strings.TrimSuffix(parts[len(parts)-1], ".go")
		if fn := runtime.FuncForPC(pc); fn != nil {
			nameParts := strings.Split(fn.Name(), ".")
			function = nameParts[len(nameParts)-1]
		}
	}

	partitionKey := "global"
	if id, ok := r.Fields["orchestration_id"].(string); ok && id != "" {
		partitionKey = id
	}

	properties := map[string]interface{}{
		"Time":     time.Now().UTC().Format("2006-01-02T15:04:05.999999") + "Z",
		"Level":    r.Severity.String(),
		"Message":  msg,
		"Module":   module,
		"Function": function,
	}

	// The row key is a hash of the core columns plus the partition key, so
	// replayed or retried emits of the same record collapse to one row.
	hashed := map[string]interface{}{"PartitionKey": partitionKey}
	for k, v := range properties {
		hashed[k] = v
	}
	b, _ := json.Marshal(hashed)
	rowKey := fmt.Sprintf("%x", md5.Sum(b))

	for k, v := range r.Fields {
		if k == "orchestration_id" {
			continue
		}
		if base, ok := strings.CutSuffix(k, overrideSuffix); ok {
			properties[strcase.ToCamel(base)] = fmt.Sprint(v)
			continue
		}
		properties[strcase.ToCamel(k)] = fmt.Sprint(v)
	}

	select {
	case t.queue <- entity{partitionKey: partitionKey, rowKey: rowKey, properties: properties}:
	default:
		fmt.Fprintf(os.Stderr, "Log queue full, dropping record: %s\n", msg)
	}
}

// Flush implements sflogimpl.Logger. It drains the queue and stops the
// shipper; the logger must not be used afterwards.
func (t *tablelog) Flush() {
	close(t.queue)
	t.wg.Wait()
	if t.base != nil {
		t.base.Flush()
	}
}

// Truncate cuts msg to the table column limit, marking the cut with an
// ellipsis.
func Truncate(msg string) string {
	if len(msg) <= MaxMessageLength {
		return msg
	}
	return msg[:MaxMessageLength-3] + "..."
}

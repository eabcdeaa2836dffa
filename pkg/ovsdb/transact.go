package ovsdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovn-org/libovsdb/client"
	libovsdb "github.com/ovn-org/libovsdb/ovsdb"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/newtron-network/vland/pkg/util"
)

// retryInterval is how often a transaction is retried while the client
// is reconnecting.
const retryInterval = 200 * time.Millisecond

// TransactWithRetry executes ops, retrying while the client is
// disconnected until ctx is done.
func TransactWithRetry(ctx context.Context, c client.Client, ops []libovsdb.Operation) ([]libovsdb.OperationResult, error) {
	var results []libovsdb.OperationResult
	err := wait.PollUntilContextCancel(ctx, retryInterval, true, func(ctx context.Context) (bool, error) {
		var err error
		results, err = c.Transact(ctx, ops...)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, client.ErrNotConnected) {
			util.WithComponent("ovsdb").Debugf("client disconnected, retrying %d ops", len(ops))
			return false, nil
		}
		return false, err
	})
	return results, err
}

// TransactAndCheck executes ops within timeout and fails if any operation
// reported an error. An empty ops list is a no-op.
func TransactAndCheck(ctx context.Context, c client.Client, ops []libovsdb.Operation, timeout time.Duration) ([]libovsdb.OperationResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := TransactWithRetry(ctx, c, ops)
	if err != nil {
		return nil, fmt.Errorf("transaction of %d ops: %w", len(ops), err)
	}
	if opErrors, err := libovsdb.CheckOperationResults(results, ops); err != nil {
		return nil, fmt.Errorf("transaction of %d ops: %v: %w", len(ops), opErrors, err)
	}
	return results, nil
}

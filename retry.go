package clusterrpc

import (
	"github.com/clusterrpc/clusterrpc/cluster"
	"github.com/clusterrpc/clusterrpc/record"
	"github.com/clusterrpc/clusterrpc/rpcerrors"
)

// buildRetryCallback implements the retry trampoline from spec §4.3.1.
//
// On success, or on a failure that does not qualify for retry, the
// original userCallback fires with whatever it was given. A failure
// qualifies for retry only when:
//
//   - the error exposes RequestAccess (it carries the failing Request),
//   - that Request's RetryAttempt is still below maxRetry,
//   - the client's RetryPolicy reports the error's Kind as retriable, and
//   - re-running node selection under the same capability constraints
//     yields a node different from the one that just failed.
//
// Any re-selection failure (no balancer, no nodes left, cluster gone) is
// swallowed in favor of the ORIGINAL error: a caller retrying because a
// node is unhealthy does not want to see "no nodes available" instead of
// the actual failure that triggered the retry.
func (c *NetworkClient) buildRetryCallback(capability, persistentCapability cluster.Capability, maxRetry int, userCallback record.Completion) record.Completion {
	var trampoline record.Completion
	trampoline = func(resp []byte, err error) {
		if err == nil {
			userCallback(resp, nil)
			return
		}

		failedReq, ok := rpcerrors.HasRequestAccess(err)
		if !ok || failedReq.RetryAttempt >= maxRetry || !c.retryPolicy.Retriable(rpcerrors.KindOf(err)) {
			userCallback(resp, err)
			return
		}

		node, selErr := c.selectNode(capability, persistentCapability)
		if selErr != nil || node.Equal(failedReq.Node) {
			userCallback(resp, err)
			return
		}

		var retryReq *record.Request
		cleanup := func(resp []byte, err error) {
			c.pending.Delete(retryReq.CorrelationID)
			trampoline(resp, err)
		}
		retryReq = failedReq.Retry(node, cleanup)
		c.exporter.RequestRetried()
		c.dispatch(retryReq)
	}
	return trampoline
}

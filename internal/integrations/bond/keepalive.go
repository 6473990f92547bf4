package bond

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// VerifyReachable fetches the bridge version and logs it.
func (c *Client) VerifyReachable(ctx context.Context) (model, firmware string, err error) {
	v, err := c.Version(ctx)
	if err != nil {
		return "", "", err
	}
	if c.logger != nil {
		c.logger.Info("connected to Bond bridge", "host", c.cfg.Host, "model", v.Model, "version", v.FirmwareVersion)
	}
	return v.Model, v.FirmwareVersion, nil
}

// StartKeepalive polls the bridge version every interval until the returned
// cancel function is called. An interval of zero or less disables polling;
// cancel still reports true.
//
// cancel stops the loop, waits for it to exit and returns true on the first
// call only.
func (c *Client) StartKeepalive(interval time.Duration) (cancel func() bool) {
	var once sync.Once
	stopped := func() bool {
		first := false
		once.Do(func() { first = true })
		return first
	}

	if interval <= 0 {
		return stopped
	}

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.keepaliveCheck(ctx, interval)
			}
		}
	}()

	return func() bool {
		first := stopped()
		stop()
		<-done
		return first
	}
}

func (c *Client) keepaliveCheck(ctx context.Context, interval time.Duration) {
	timeout := c.cfg.Timeout
	if interval < timeout {
		timeout = interval
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := c.roundTrip(checkCtx, http.MethodGet, "/v2/sys/version", nil); err != nil {
		if ctx.Err() == nil && c.logger != nil {
			c.logger.Warn("Bond keepalive check failed", "host", c.cfg.Host, "error", err)
		}
		return
	}
	if c.logger != nil {
		c.logger.Debug("Bond keepalive check successful", "host", c.cfg.Host)
	}
}

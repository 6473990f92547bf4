package mqtt

import "fmt"

// Subscribe routes messages matching topic to handler. topic may contain
// + and # wildcards, e.g. Topics{}.AllSimulate(). The subscription is
// replayed after every reconnect; a failed subscribe is not remembered.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	var err error
	switch {
	case !token.WaitTimeout(defaultPublishTimeout):
		err = fmt.Errorf("%w: %s: no SUBACK within %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	case token.Error() != nil:
		err = fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, token.Error())
	}
	if err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
	}
	return err
}

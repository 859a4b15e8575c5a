package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/markdown-ticket/mdt"
)

// cmdWatch streams change events as JSON lines until a signal arrives.
func cmdWatch(out io.Writer, tracker *mdt.Tracker, sigCh <-chan os.Signal) error {
	sub := tracker.Subscribe()
	defer tracker.Unsubscribe(sub)

	encoder := json.NewEncoder(out)

	for {
		select {
		case <-sigCh:
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}

			encodeErr := encoder.Encode(event)
			if encodeErr != nil {
				return encodeErr
			}
		}
	}
}

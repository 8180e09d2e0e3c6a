package peercloud

import (
	"fmt"
	"math"
)

// fragment splits data into user messages of at most size bytes each. An
// empty payload still yields a single message.
func fragment(data []byte, size int) ([]*UserMessage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("peercloud: invalid fragment size %d", size)
	}
	count := (len(data) + size - 1) / size
	if count == 0 {
		count = 1
	}
	if count > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes need %d fragments", ErrPayloadTooLarge, len(data), count)
	}
	msgs := make([]*UserMessage, count)
	for i := 0; i < count; i++ {
		end := (i + 1) * size
		if end > len(data) {
			end = len(data)
		}
		msgs[i] = &UserMessage{
			Data:          data[i*size : end],
			FragmentCount: uint16(count),
			FragmentIndex: uint16(i),
		}
	}
	return msgs, nil
}

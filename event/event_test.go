// Copyright 2025 Edulith Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/edulith/sigil/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventType = event.EventType("test.event")

func TestEventBusSubscribePublish(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	_, evtCh := eb.Subscribe(testEventType)
	eb.Publish(testEventType, event.NewEvent(testEventType, "payload"))

	select {
	case evt := <-evtCh:
		assert.Equal(t, testEventType, evt.Type)
		assert.Equal(t, "payload", evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBusSubscribeFunc(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	var received event.Event
	eb.SubscribeFunc(testEventType, func(evt event.Event) {
		received = evt
		wg.Done()
	})
	eb.Publish(testEventType, event.NewEvent(
		testEventType,
		event.CertificateSubmittedEvent{
			SubjectId: "course-101",
			HolderId:  "user-1",
			TxId:      "0xabc",
		},
	))
	wg.Wait()

	data, ok := received.Data.(event.CertificateSubmittedEvent)
	require.True(t, ok)
	assert.Equal(t, "0xabc", data.TxId)
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	subId, evtCh := eb.Subscribe(testEventType)
	eb.Unsubscribe(testEventType, subId)

	// Channel is closed on unsubscribe
	_, ok := <-evtCh
	assert.False(t, ok)

	// Publishing with no subscribers must not block
	eb.Publish(testEventType, event.NewEvent(testEventType, nil))
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	_, evtCh1 := eb.Subscribe(testEventType)
	_, evtCh2 := eb.Subscribe(testEventType)
	eb.Publish(testEventType, event.NewEvent(testEventType, 42))

	for _, evtCh := range []<-chan event.Event{evtCh1, evtCh2} {
		select {
		case evt := <-evtCh:
			assert.Equal(t, 42, evt.Data)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestEventBusStopClosesSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)

	_, evtCh := eb.Subscribe(testEventType)
	eb.Stop()

	_, ok := <-evtCh
	assert.False(t, ok)
}

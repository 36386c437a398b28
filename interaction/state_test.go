// Copyright 2025 Kadir Pekel
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

package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kadirpekel/conversa/event"
)

func TestLastCustomerMessageFindsMostRecentCustomerMessage(t *testing.T) {
	st := State{
		History: []event.Event{
			{Source: event.SourceCustomer, Kind: event.KindMessage, Data: event.MessageData{Message: "first"}},
			{Source: event.SourceAIAgent, Kind: event.KindMessage, Data: event.MessageData{Message: "reply"}},
			{Source: event.SourceCustomer, Kind: event.KindMessage, Data: event.MessageData{Message: "second"}},
		},
	}
	assert.Equal(t, "second", st.LastCustomerMessage())
}

func TestLastCustomerMessageIgnoresNonMessageAndNonCustomerEvents(t *testing.T) {
	st := State{
		History: []event.Event{
			{Source: event.SourceCustomer, Kind: event.KindMessage, Data: event.MessageData{Message: "only"}},
			{Source: event.SourceAIAgent, Kind: event.KindStatus, Data: event.StatusData{Status: event.StatusTyping}},
		},
	}
	assert.Equal(t, "only", st.LastCustomerMessage())
}

func TestLastCustomerMessageEmptyWhenNoneExists(t *testing.T) {
	st := State{History: []event.Event{
		{Source: event.SourceAIAgent, Kind: event.KindMessage, Data: event.MessageData{Message: "hi"}},
	}}
	assert.Equal(t, "", st.LastCustomerMessage())
}

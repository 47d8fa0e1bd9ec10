package allocation_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/core/allocation"
)

func TestMarshalRoundTrip(t *testing.T) {
	skuID := uuid.New()
	tests := []struct {
		name string
		msg  allocation.Message
	}{
		{name: "event", msg: allocation.NewOrderItemAllocated(skuID, uuid.New(), uuid.New())},
		{name: "command with eta", msg: allocation.NewCreateBatch(skuID, 20, day(3))},
		{name: "command without eta", msg: allocation.NewCreateBatch(skuID, 20, nil)},
		{name: "rename", msg: allocation.NewProductRenamed(skuID, "LARGE-TABLE")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			body, err := allocation.Marshal(test.msg)
			if err != nil {
				t.Fatal(err)
			}

			got, err := allocation.Unmarshal(body)
			if err != nil {
				t.Fatal(err)
			}

			if got.Name() != test.msg.Name() {
				t.Errorf("name got=%s want=%s", got.Name(), test.msg.Name())
			}
			if got.MessageID() != test.msg.MessageID() {
				t.Errorf("id got=%s want=%s", got.MessageID(), test.msg.MessageID())
			}
		})
	}
}

func TestUnmarshalCreateBatchFields(t *testing.T) {
	cmd := allocation.NewCreateBatch(uuid.New(), 35, day(2))
	body, err := allocation.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}

	m, err := allocation.Unmarshal(body)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := m.(*allocation.CreateBatch)
	if !ok {
		t.Fatalf("type got=%T want=*allocation.CreateBatch", m)
	}
	if got.SkuID != cmd.SkuID || got.Quantity != 35 {
		t.Errorf("fields got=%+v want=%+v", got, cmd)
	}
	if got.ETA == nil || !got.ETA.Equal(*cmd.ETA) {
		t.Errorf("eta got=%v want=%v", got.ETA, cmd.ETA)
	}
}

func TestDumpCarriesName(t *testing.T) {
	fields, err := allocation.Dump(allocation.NewOutOfStock(uuid.New(), uuid.New()))
	if err != nil {
		t.Fatal(err)
	}
	if fields["name"] != allocation.OutOfStockEvent {
		t.Errorf("name got=%v want=%s", fields["name"], allocation.OutOfStockEvent)
	}
	for _, key := range []string{"uuid", "sku_id", "order_item_id"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %s in %v", key, fields)
		}
	}
}

func TestUnmarshalUnknownName(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"name": "Teleport"})

	_, err := allocation.Unmarshal(body)
	if !errors.Is(err, allocation.ErrUnknownMessage) {
		t.Errorf("err got=%v want=%v", err, allocation.ErrUnknownMessage)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := allocation.Unmarshal([]byte("{not json")); err == nil {
		t.Errorf("expected an error")
	}
}

func TestMessageNames(t *testing.T) {
	for _, name := range append(allocation.EventNames(), allocation.CommandNames()...) {
		body, _ := json.Marshal(map[string]string{"name": name})
		m, err := allocation.Unmarshal(body)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if m.Name() != name {
			t.Errorf("name got=%s want=%s", m.Name(), name)
		}
	}
}

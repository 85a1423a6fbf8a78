package core

import (
	"testing"

	"ee24/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	id := registry.Register("test_command", "arg=%u", func(data *[]byte) error {
		called = true
		return nil
	})
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}
	if cmd.Signature() != "test_command arg=%u" {
		t.Errorf("Unexpected signature '%s'", cmd.Signature())
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	if err := registry.Dispatch(999, &data); err != ErrUnknownCommand {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistrySequentialIDs(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "", func(data *[]byte) error { return nil })
	id2 := registry.RegisterResponse("response1", "val=%u")
	id3 := registry.Register("command2", "", func(data *[]byte) error { return nil })

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("IDs not sequential: %d, %d, %d", id1, id2, id3)
	}
	if again := registry.Register("command1", "x=%c", nil); again != id1 {
		t.Errorf("Re-registering returned %d, expected %d", again, id1)
	}
	if registry.Count() != 3 {
		t.Errorf("Expected 3 entries, got %d", registry.Count())
	}

	// responses have no handler to dispatch to
	var data []byte
	if err := registry.Dispatch(id2, &data); err != ErrUnknownCommand {
		t.Errorf("Dispatching a response: expected ErrUnknownCommand, got %v", err)
	}

	if cmd, ok := registry.GetCommandByName("response1"); !ok || cmd.ID != 1 {
		t.Errorf("GetCommandByName returned %+v, %v", cmd, ok)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var got []uint32
	id := registry.Register("test_args", "a=%u b=%c", func(data *[]byte) error {
		var a, b uint32
		if err := decodeArgs(data, &a, &b); err != nil {
			return err
		}
		got = append(got, a, b)
		return nil
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	protocol.EncodeVLQUint(output, 7)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(got) != 2 || got[0] != 12345 || got[1] != 7 {
		t.Errorf("Unexpected arguments %v", got)
	}

	short := []byte{}
	if err := registry.Dispatch(id, &short); err != protocol.ErrBufferTooSmall {
		t.Errorf("Missing arguments: expected ErrBufferTooSmall, got %v", err)
	}
}

package ernode

import "testing"

func TestParseAddressBare(t *testing.T) {
	a, err := ParseAddress("alive@host.example.com")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if a.Transport != TransportTCP || a.Alive != "alive" || a.HostOrPath != "host.example.com" {
		t.Fatalf("unexpected parse: %+v", a)
	}
}

func TestParseAddressTCPScheme(t *testing.T) {
	a, err := ParseAddress("tcp://node@127.0.0.1")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if a.Transport != TransportTCP || a.Alive != "node" || a.HostOrPath != "127.0.0.1" {
		t.Fatalf("unexpected parse: %+v", a)
	}
	if a.NodeName() != "node@127.0.0.1" {
		t.Fatalf("NodeName() = %q", a.NodeName())
	}
}

func TestParseAddressUDSScheme(t *testing.T) {
	a, err := ParseAddress("uds:///var/run/erlang.sock")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if a.Transport != TransportUDS || a.HostOrPath != "/var/run/erlang.sock" {
		t.Fatalf("unexpected parse: %+v", a)
	}
}

func TestParseAddressUnknownScheme(t *testing.T) {
	_, err := ParseAddress("ftp://alive@host")
	if err == nil {
		t.Fatalf("expected ErrUnknownTransport")
	}
}

func TestParseAddressMissingAt(t *testing.T) {
	_, err := ParseAddress("justahostname")
	if err == nil {
		t.Fatalf("expected ErrInvalidNodeName for a bare hostname with no alive@")
	}
}

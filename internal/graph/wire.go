package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatWireID formats a tensor address as "<name>:<port>".
func FormatWireID(name string, port int) string {
	return name + ":" + strconv.Itoa(port)
}

// ParseWireID splits a "<name>:<port>" address. A bare name addresses port 0.
func ParseWireID(id string) (name string, port int, err error) {
	i := strings.LastIndexByte(id, ':')
	if i < 0 {
		if id == "" {
			return "", 0, fmt.Errorf("empty wire id")
		}
		return id, 0, nil
	}
	name = id[:i]
	if name == "" {
		return "", 0, fmt.Errorf("wire id %q: empty name", id)
	}
	port, err = strconv.Atoi(id[i+1:])
	if err != nil || port < 0 {
		return "", 0, fmt.Errorf("wire id %q: invalid port", id)
	}
	return name, port, nil
}

package addr

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidPort indicates a port number outside the valid range of 1-65535.
var ErrInvalidPort = errors.New("invalid port number")

// ParsePort converts a string to a valid port number.
func ParsePort(port string) (uint16, error) {
	portNum, err := strconv.ParseUint(port, 10, 16)
	if err != nil || portNum == 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPort, port)
	}
	return uint16(portNum), nil
}

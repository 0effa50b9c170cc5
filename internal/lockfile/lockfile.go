// Package lockfile reads and watches the lockfile a local client publishes
// its API credential in.
//
// The first line of a lockfile has the form
//
//	name:pid:port:password:protocol
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rickgao/lcuwatch/internal/model"
)

// Errors
var (
	ErrNotFound  = errors.New("no valid lockfile found")
	ErrMalformed = errors.New("malformed lockfile")
)

// Parse parses the first line of a lockfile read from path.
func Parse(line, path string) (model.Credential, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, ":")
	if len(parts) < 5 {
		return model.Credential{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(parts))
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: pid %q", ErrMalformed, parts[1])
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil || port < 1 || port > 65535 {
		return model.Credential{}, fmt.Errorf("%w: port %q", ErrMalformed, parts[2])
	}

	return model.Credential{
		Name:     parts[0],
		PID:      pid,
		Port:     port,
		Password: parts[3],
		Protocol: parts[4],
		Path:     path,
	}, nil
}

// Read returns the credential from the first candidate that exists and
// parses. Unreadable and malformed candidates are skipped.
func Read(candidates []string) (model.Credential, error) {
	for _, path := range candidates {
		line, err := firstLine(path)
		if err != nil {
			continue
		}
		cred, err := Parse(line, path)
		if err != nil {
			continue
		}
		return cred, nil
	}
	return model.Credential{}, ErrNotFound
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

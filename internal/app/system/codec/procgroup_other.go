//go:build !unix

package codec

import "os/exec"

func configureProcessGroup(c *exec.Cmd) {}

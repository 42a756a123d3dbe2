package bridge

import (
	"errors"
	"io"
	"log/slog"

	"floppier/protocol"
)

type recordingSender struct {
	cmds []protocol.Command
	fail error
}

func (r *recordingSender) Send(cmd protocol.Command) error {
	if r.fail != nil {
		return r.fail
	}
	r.cmds = append(r.cmds, cmd)
	return nil
}

var errLinkDown = errors.New("link down")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

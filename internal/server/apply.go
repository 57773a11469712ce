package server

import (
	"github.com/ASHISH26940/sharedvars/internal/journal"
	"github.com/ASHISH26940/sharedvars/internal/metrics"
	"github.com/ASHISH26940/sharedvars/internal/protocol"
)

// Applies a decoded wire command to the store after recording it in the
// journal. A journal failure is logged and does not block the mutation.
func (s *Server) apply(connID string, cmd protocol.Command) {
	if s.journal != nil {
		if err := s.journal.Write(journal.NewEntry(connID, cmd)); err != nil {
			s.logger.Error("failed to write journal entry", "conn", connID, "error", err)
		}
	}

	switch cmd.Op {
	case protocol.OpAdd:
		s.store.Add(cmd.Name, cmd.Value)
		s.metrics.Entries(s.store.Len())
	case protocol.OpQuit:
		// Touches no entry; the accept loop stops after this command.
	}

	s.metrics.Command(cmd.Op.String(), metrics.ResultApplied)
}

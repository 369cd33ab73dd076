package daemon

// DaemonStats is a point-in-time snapshot of the operation counters.
type DaemonStats struct {
	XorOps        uint64 `json:"xor_ops"`
	PipelineOps   uint64 `json:"pipeline_ops"`
	BytesIn       uint64 `json:"bytes_in"`
	BytesOut      uint64 `json:"bytes_out"`
	CommandErrors uint64 `json:"command_errors"`
}

// GetStats returns current operation statistics
func (d *Daemon) GetStats() DaemonStats {
	return DaemonStats{
		XorOps:        d.XorOps.Load(),
		PipelineOps:   d.PipelineOps.Load(),
		BytesIn:       d.BytesIn.Load(),
		BytesOut:      d.BytesOut.Load(),
		CommandErrors: d.CommandErrors.Load(),
	}
}

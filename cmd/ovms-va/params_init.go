package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/params"
)

// openParams opens the parameter store and writes through the values the
// operator chose for persisted flags. Unset flags leave stored values alone.
func openParams(cfg *appConfig, l *slog.Logger) (*params.Store, error) {
	st, err := params.Open(cfg.dbPath)
	if err != nil {
		metrics.IncError(metrics.ErrParams)
		return nil, err
	}
	writes := map[string]string{}
	if cfg.isSet("min-soc") {
		writes[params.KeyMinSOC] = strconv.Itoa(cfg.minSOC)
	}
	if cfg.isSet("units") {
		writes[params.KeyUnits] = cfg.units
	}
	for k, v := range writes {
		if err := st.Set(k, v); err != nil {
			metrics.IncError(metrics.ErrParams)
			_ = st.Close()
			return nil, fmt.Errorf("persist %s: %w", k, err)
		}
	}
	all, err := st.All()
	if err != nil {
		l.Warn("params_read_error", "error", err)
	} else {
		l.Info("params_loaded", "path", cfg.dbPath, "min_soc", all[params.KeyMinSOC], "units", all[params.KeyUnits], "can_write", all[params.KeyCANWrite])
	}
	return st, nil
}

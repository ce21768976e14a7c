// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildStageSeconds measures wall time per pipeline stage.
	// Labels: stage (add_modules, link_declarations, path_attrs, re_exports, prune, freeze)
	buildStageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crategraph",
		Subsystem: "tree",
		Name:      "build_stage_seconds",
		Help:      "Wall time per module tree build stage",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"stage"})

	// buildsTotal counts completed builds by outcome.
	// Labels: status (ok, error)
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crategraph",
		Subsystem: "tree",
		Name:      "builds_total",
		Help:      "Completed module tree builds by outcome",
	}, []string{"status"})

	// prunedNodesTotal counts nodes removed by the pruning stage.
	// Labels: kind (module, item)
	prunedNodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crategraph",
		Subsystem: "tree",
		Name:      "pruned_nodes_total",
		Help:      "Nodes removed by the unlinked-file-module pruning stage",
	}, []string{"kind"})

	// unlinkedModulesTotal counts file modules with no declaration seen at
	// link time.
	unlinkedModulesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crategraph",
		Subsystem: "tree",
		Name:      "unlinked_modules_total",
		Help:      "File modules with no matching declaration at link time",
	})

	// externalReExportsTotal counts re-exports that named an external
	// dependency and were skipped.
	externalReExportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crategraph",
		Subsystem: "tree",
		Name:      "external_reexports_total",
		Help:      "Re-exports skipped because they target external dependencies",
	})
)

// Package forecast maintains one online quantile model per generation site.
//
// Every reading updates the site's p10/p50/p90 regressors in O(1) time and
// memory; nothing beyond two small ring buffers is retained. The first
// WarmupSamples readings are answered by a cloud-cover heuristic. Once past
// warm-up the engine tracks the running MAE of the median model and flags
// persistent underperformance when the last HistoryWindow relative
// deviations are all below AnomalyThreshold.
//
// Model state is snapshotted to a versioned JSON file every SnapshotEvery
// updates of a site and reloaded at start. Persistence is best-effort: a
// missing, corrupt or foreign-version snapshot simply means the models are
// rebuilt online.
package forecast

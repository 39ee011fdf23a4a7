// Package retention prunes evidence records by age and by count.
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 90,
//	    PruneSchedule: "0 3 * * *",
//	})
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// When ArchivePath is set every batch is exported to a JSON file in that
// directory before it is deleted.
package retention

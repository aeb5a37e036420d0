// Package snapshot provides the tabular model of one notifier run.
//
// A run turns every host record returned by the lookup API into flat rows,
// one per exposed service, and orders them into a Snapshot. The previous
// run's Snapshot is kept on disk so the next run can report what changed.
//
// # Main Components
//
// ## Rows
//
//   - Row: one service record; IP, port, OS, hostnames, domains, product,
//     version, vulnerability ids, plus the volatile sequence number and
//     timestamp columns
//   - Row.IdentityKey: the comparison key without the volatile columns
//
// ## Building a Snapshot
//
//   - Normalize: host record to rows, applying the "-" placeholders and the
//     sorted vulnerability id list
//   - Sort: stable order by IP then numeric port, numbered from 1
//
// ## Persistence
//
//   - FileStore: latest snapshot file plus one archive file per calendar
//     date, both in the comma separated row format without header
//   - ReadRows, WriteRows: the row codec shared by the store and reports
//
// # Usage Examples
//
//	var rows []snapshot.Row
//	for _, ip := range targets {
//		host, err := lookup.Host(ctx, ip)
//		if err != nil {
//			continue
//		}
//		rows = append(rows, snapshot.Normalize(host)...)
//	}
//	snap := snapshot.Sort(rows)
//
//	store := snapshot.NewFileStore("last_result.csv", "logs")
//	if err := store.Save(snap); err != nil {
//		return err
//	}
//
// # Concurrency
//
// FileStore performs no locking. Two processes sharing the same files can
// interleave a read of the previous snapshot with another run's overwrite;
// run one notifier per store.
package snapshot

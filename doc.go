// Package repairfs salvages data from damaged files using positioned I/O.
//
// The package copies a source file page by page through offset-explicit
// reads and writes (see the handle subpackage), skips pages the OS cannot
// read, and reports exactly which pages were lost. Salvage output can be
// verified with per-page checksums (verify) and archived with compression
// to local directories, S3 or MinIO (archive).
//
// Basic usage:
//
//	report, err := repairfs.Salvage(ctx, "broken.db", "salvaged.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("copied %d pages, lost %d\n", report.PagesCopied, report.BadPages.GetCardinality())
//
// Every failing OS call is additionally published to a notify.Notifier so
// diagnostics can observe failures independently of the return path.
package repairfs

// Package scraper runs one complete pass over the video library.
//
// A run has four stages:
//
//   - login: the session manager brings the browser to a logged-in state,
//     pausing for a manual login before trying stored credentials
//   - enumeration: the listing page is scrolled until its height stops
//     growing and the resource links are extracted and validated
//   - per resource: the page is opened, the reconciliation engine decides
//     whether a local file already exists, and if not the download button
//     is clicked and the new file recorded in the mapping store
//   - summary: counts, library size, metrics textfile and notification
//
// Resources are processed strictly one at a time so the before/after
// directory snapshots around each click cannot interleave.
//
// Usage:
//
//	opts := browser.OptionsFromConfig(cfg.Browser, downloadDir)
//	driver, err := browser.NewChromeDriver(ctx, opts, log)
//	if err != nil {
//	    return err
//	}
//	defer driver.Close()
//
//	s, err := scraper.New(cfg, driver, session.LineContinuation{In: os.Stdin, Out: os.Stdout}, log)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	stats, err := s.Run(ctx)
//
// Failures:
//
// A missing download button or a page that will not load only fails that
// resource. A dead browser, a failed login, an empty listing or an
// unwritable download directory end the run. Clicks that produced no file
// within the settle window are kept in a checkpoint file and checked again
// at the end of the run and on the next run.
package scraper

// Package harness runs fixture scenarios against the console.
//
// A Runner takes the cases of one scenario from a fixture.Provider and
// drives them one at a time through a browser.Driver, checking the result
// of every submission with an Assertions helper:
//
//	create, expect fail:  bad message with the expected lines, every hash
//	                      query unchanged, no row with the submitted key
//	create, expect pass:  good message, exactly one row with the key,
//	                      every submitted field read back after re-opening
//	simple_update:        good message, every hash query unchanged
//	cancel:               every hash query unchanged, no row with the key
//	delete:               good message after the confirmation, no row left
//
// Cases run strictly in file order against one Session, since later cases
// may edit records created by earlier ones. Each driver call and assertion
// is stamped by a logical clock into the case trace, so a run can be
// compared against golden files under testdata/golden.
//
// Infrastructure errors (missing elements, timeouts, database failures)
// fail the case and abort the scenario unless KeepGoing is set. Assertion
// failures never abort. Nothing is retried: resubmitting a create form
// would duplicate rows.
package harness

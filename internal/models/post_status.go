package models

// FoldStatus derives the overall post status from the per-platform results of
// the targeted platforms.
//
// A post is never reported as failed while some target has not been tried
// yet, so a later success on that platform is not masked.
func FoldStatus(targets []Platform, results PlatformResults) string {
	if len(targets) == 0 {
		return PostStatusScheduled
	}

	var succeeded, failed int
	for _, p := range targets {
		r, ok := results.Get(p)
		if !ok {
			continue
		}
		switch r.Status {
		case ResultStatusSuccess:
			succeeded++
		case ResultStatusFailed:
			failed++
		}
	}

	attempted := succeeded + failed
	switch {
	case attempted == 0:
		return PostStatusScheduled
	case attempted < len(targets):
		return PostStatusPartiallyPublished
	case succeeded == attempted:
		return PostStatusPublished
	case failed == attempted:
		return PostStatusFailed
	default:
		return PostStatusPartiallyPublished
	}
}

package syncstage

import "github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"

func transientError(op string, cause error) *ingesterr.Error {
	return ingesterr.Transient("syncstage: "+op, cause)
}

func permanentError(op string, cause error) *ingesterr.Error {
	return ingesterr.PermanentErr("syncstage: "+op, cause)
}

package api

import (
    "errors"
    "net/http"

    "github.com/gin-gonic/gin"
    "go.uber.org/multierr"

    "tensicare/internal/charts"
    "tensicare/internal/data"
    "tensicare/internal/features"
    "tensicare/internal/models"
    "tensicare/internal/predict"
    "tensicare/internal/preprocess"
    "tensicare/internal/session"
    "tensicare/internal/store"
    "tensicare/internal/training"
)

var (
    errBadRequest = errors.New("bad request")
    errStore      = errors.New("model store unavailable")
)

var (
    inputErrors = []error{
        errBadRequest,
        data.ErrEmptyInput, data.ErrNoColumns, data.ErrBlankHeader, data.ErrDuplicateHeader,
        preprocess.ErrUnknownScaling, preprocess.ErrUnknownEncoding, preprocess.ErrUnknownColumn,
        features.ErrTargetNotSet, features.ErrUnknownTarget, features.ErrNoPredictors,
        features.ErrUnknownPredictor, features.ErrTargetIsPredictor, features.ErrDuplicatePredictor,
        models.ErrInvalidModel, models.ErrMissingValue, models.ErrNotNumeric, models.ErrUnknownCategory,
        charts.ErrUnknownKind, store.ErrInvalidName,
    }
    preconditionErrors = []error{
        session.ErrNoDataset, session.ErrNotCleaned, session.ErrNoSelection, session.ErrNoModel, charts.ErrNoData,
    }
)

func isAny(err error, targets []error) bool {
    for _, t := range targets {
        if errors.Is(err, t) { return true }
    }
    return false
}

func statusFor(err error) int {
    var (
        maxBytes *http.MaxBytesError
        parseErr *data.ParseError
        missing  *predict.MissingColumnsError
    )
    switch {
    case errors.As(err, &maxBytes):
        return http.StatusRequestEntityTooLarge
    case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
        return http.StatusNotFound
    case errors.Is(err, errStore):
        return http.StatusBadGateway
    case errors.Is(err, training.ErrTraining):
        return http.StatusUnprocessableEntity
    case isAny(err, preconditionErrors):
        return http.StatusConflict
    case errors.As(err, &parseErr), errors.As(err, &missing), isAny(err, inputErrors):
        return http.StatusBadRequest
    }
    return http.StatusInternalServerError
}

// fail writes err as a JSON body with the status matching its kind.
func fail(c *gin.Context, err error) {
    _ = c.Error(err)
    body := gin.H{"error": err.Error()}
    var (
        missing *predict.MissingColumnsError
        rowErr  *predict.BatchRowError
    )
    if errors.As(err, &missing) { body["missing_columns"] = missing.Columns }
    if errors.As(err, &rowErr) { body["row"] = rowErr.Row }
    if errs := multierr.Errors(err); len(errs) > 1 {
        msgs := make([]string, len(errs))
        for i, e := range errs { msgs[i] = e.Error() }
        body["errors"] = msgs
    }
    c.AbortWithStatusJSON(statusFor(err), body)
}

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/fieldmapless/synb0/internal/volume"
	"github.com/fieldmapless/synb0/pkg/nifti"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, ErrorResponse{
		Error: ResponseError{
			Message: msg,
			Type:    errType,
		},
	})
}

// readVolumePart decodes one NIfTI volume from a multipart form file.
func readVolumePart(c *echo.Context, name string) (*volume.Volume, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, fmt.Errorf("missing form file %q", name)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()
	im, err := nifti.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return volume.FromImage(im), nil
}

func wantsJSON(c *echo.Context) bool {
	return strings.Contains(c.Request().Header.Get("Accept"), echo.MIMEApplicationJSON)
}

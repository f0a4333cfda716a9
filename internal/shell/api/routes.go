package api

import (
	"net/http"

	"github.com/artpar/sitehost/internal/shell/api/openapi"
)

var projectIDParam = openapi.Param{Name: "id", In: "path", Description: "Project ID"}

// apiRoutes describes the /api/v1 surface for the OpenAPI document.
func apiRoutes() []openapi.Route {
	ownerErrors := []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusServiceUnavailable}
	return []openapi.Route{
		{
			Method: http.MethodGet, Path: "/api/v1/availability",
			OperationID: "checkAvailability", Summary: "Check whether a project could publish under a name", Tag: "Names",
			Params: []openapi.Param{
				{Name: "name", In: "query", Description: "Name as typed", Required: true},
				{Name: "project_id", In: "query", Description: "Requesting project; ignored unless owned by the caller"},
			},
			Response: AvailabilityResponse{},
			Errors:   []int{http.StatusUnauthorized, http.StatusServiceUnavailable},
			Secured:  true,
		},
		{
			Method: http.MethodGet, Path: "/api/v1/public-url/{name}",
			OperationID: "buildPublicURL", Summary: "Format the public URL of a name", Tag: "Names",
			Params:   []openapi.Param{{Name: "name", In: "path"}},
			Response: PublicURLResponse{},
			Errors:   []int{http.StatusUnprocessableEntity},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/projects",
			OperationID: "createProject", Summary: "Create a draft project", Tag: "Projects",
			Request: CreateProjectRequest{}, Response: ProjectResponse{}, Status: http.StatusCreated,
			Errors:  []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusServiceUnavailable},
			Secured: true,
		},
		{
			Method: http.MethodGet, Path: "/api/v1/projects",
			OperationID: "listProjects", Summary: "List the caller's projects, newest first", Tag: "Projects",
			Params: []openapi.Param{
				{Name: "limit", In: "query", Integer: true},
				{Name: "offset", In: "query", Integer: true},
			},
			Response: ProjectListResponse{},
			Errors:   []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusServiceUnavailable},
			Secured:  true,
		},
		{
			Method: http.MethodGet, Path: "/api/v1/projects/{id}",
			OperationID: "getProject", Summary: "Get a project", Tag: "Projects",
			Params: []openapi.Param{projectIDParam}, Response: ProjectResponse{},
			Errors: ownerErrors, Secured: true,
		},
		{
			Method: http.MethodDelete, Path: "/api/v1/projects/{id}",
			OperationID: "deleteProject", Summary: "Delete a project and release its name", Tag: "Projects",
			Params: []openapi.Param{projectIDParam}, Status: http.StatusNoContent,
			Errors: ownerErrors, Secured: true,
		},
		{
			Method: http.MethodPut, Path: "/api/v1/projects/{id}/draft",
			OperationID: "saveDraft", Summary: "Replace the draft content", Tag: "Projects",
			Params: []openapi.Param{projectIDParam}, Request: ContentBody{}, Response: ProjectResponse{},
			Errors: ownerErrors, Secured: true,
		},
		{
			Method: http.MethodPut, Path: "/api/v1/projects/{id}/name",
			OperationID: "renameProject", Summary: "Change the display name", Tag: "Projects",
			Params: []openapi.Param{projectIDParam}, Request: RenameProjectRequest{}, Response: ProjectResponse{},
			Errors: append(ownerErrors, http.StatusUnprocessableEntity), Secured: true,
		},
		{
			Method: http.MethodPut, Path: "/api/v1/projects/{id}/metadata",
			OperationID: "updateMetadata", Summary: "Replace business info and SEO settings", Tag: "Projects",
			Params: []openapi.Param{projectIDParam}, Request: UpdateMetadataRequest{}, Response: ProjectResponse{},
			Errors: ownerErrors, Secured: true,
		},
		{
			Method: http.MethodPost, Path: "/api/v1/projects/{id}/duplicate",
			OperationID: "duplicateProject", Summary: "Copy a project into a new draft", Tag: "Projects",
			Params: []openapi.Param{projectIDParam}, Response: ProjectResponse{}, Status: http.StatusCreated,
			Errors: ownerErrors, Secured: true,
		},
		{
			Method: http.MethodPost, Path: "/api/v1/projects/{id}/publish",
			OperationID: "publishProject", Summary: "Claim a name and publish a snapshot", Tag: "Publishing",
			Params: []openapi.Param{projectIDParam}, Request: PublishRequest{}, Response: PublishResponse{},
			Errors:  append(ownerErrors, http.StatusConflict, http.StatusUnprocessableEntity),
			Secured: true,
		},
		{
			Method: http.MethodPost, Path: "/api/v1/projects/{id}/unpublish",
			OperationID: "unpublishProject", Summary: "Take a project offline and release its name", Tag: "Publishing",
			Params: []openapi.Param{projectIDParam}, Response: ProjectResponse{},
			Errors: ownerErrors, Secured: true,
		},
	}
}

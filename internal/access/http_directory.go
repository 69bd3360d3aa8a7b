package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPDirectory reads applications, jobs, companies, memberships and
// recruiter relationships from the platform's CRUD services. Those services
// own the data; this client only asks questions.
type HTTPDirectory struct {
	base   string
	token  string
	client *http.Client
}

func NewHTTPDirectory(baseURL, serviceToken string) *HTTPDirectory {
	return &HTTPDirectory{
		base:   baseURL,
		token:  serviceToken,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *HTTPDirectory) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var errNotFound = fmt.Errorf("directory: not found")

func (d *HTTPDirectory) GetApplication(ctx context.Context, id string) (*Application, error) {
	var app Application
	if err := d.get(ctx, "/internal/applications/"+id, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (d *HTTPDirectory) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := d.get(ctx, "/internal/jobs/"+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (d *HTTPDirectory) GetCompany(ctx context.Context, id string) (*Company, error) {
	var company Company
	if err := d.get(ctx, "/internal/companies/"+id, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

func (d *HTTPDirectory) HasJobAssignment(ctx context.Context, userID, jobID string) (bool, error) {
	return d.exists(ctx, fmt.Sprintf("/internal/jobs/%s/assignments/%s", jobID, userID))
}

func (d *HTTPDirectory) HasApplicationForJob(ctx context.Context, userID, jobID string) (bool, error) {
	return d.exists(ctx, fmt.Sprintf("/internal/jobs/%s/applications/by-candidate/%s", jobID, userID))
}

func (d *HTTPDirectory) IsOrgMember(ctx context.Context, userID, orgID string) (bool, error) {
	return d.exists(ctx, fmt.Sprintf("/internal/organizations/%s/members/%s", orgID, userID))
}

func (d *HTTPDirectory) ActiveRepresentation(ctx context.Context, candidateID string) (*Representation, error) {
	var rep Representation
	err := d.get(ctx, "/internal/candidates/"+candidateID+"/representation", &rep)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (d *HTTPDirectory) exists(ctx context.Context, path string) (bool, error) {
	err := d.get(ctx, path, &struct{}{})
	if err == errNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

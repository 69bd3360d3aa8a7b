// Package access decides whether a caller may open a conversation with a
// target, and reroutes conversations aimed at candidates under active
// recruiter representation.
package access

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/splits-network/messaging-service/internal/domain"
)

// Application, Job, Company and Representation live in the platform's CRUD
// services; this core only reads them through Directory.
type Application struct {
	ID          string
	CandidateID string
	RecruiterID string
	JobID       string
}

type Job struct {
	ID             string
	CompanyID      string
	OrganizationID string
}

type Company struct {
	ID             string
	OrganizationID string
}

// Representation is an active recruiter-candidate relationship plus its
// sourcing-protection window.
type Representation struct {
	RecruiterID         string
	RecruiterName       string
	CandidateName       string
	RelationshipEndDate *time.Time
	ProtectionExpiresAt time.Time
}

type Directory interface {
	GetApplication(ctx context.Context, id string) (*Application, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	GetCompany(ctx context.Context, id string) (*Company, error)
	HasJobAssignment(ctx context.Context, userID, jobID string) (bool, error)
	HasApplicationForJob(ctx context.Context, userID, jobID string) (bool, error)
	IsOrgMember(ctx context.Context, userID, orgID string) (bool, error)
	// ActiveRepresentation returns nil when the candidate has no recruiter
	// relationship at all.
	ActiveRepresentation(ctx context.Context, candidateID string) (*Representation, error)
}

// Routing is the outcome of representation substitution.
type Routing struct {
	Routed        bool
	EffectiveID   string
	SystemMessage string
}

type Resolver struct {
	dir Directory
	log *zap.SugaredLogger
}

func NewResolver(dir Directory, log *zap.SugaredLogger) *Resolver {
	return &Resolver{dir: dir, log: log}
}

// Authorize checks the caller's relationship to the supplied context. With
// no context at all the call is allowed; acquaintance is then enforced by
// conversation uniqueness, not here.
func (r *Resolver) Authorize(ctx context.Context, callerID string, cc domain.ConversationContext) error {
	switch {
	case cc.ApplicationID != "":
		return r.authorizeApplication(ctx, callerID, cc.ApplicationID)
	case cc.JobID != "":
		return r.authorizeJob(ctx, callerID, cc.JobID)
	case cc.CompanyID != "":
		return r.authorizeCompany(ctx, callerID, cc.CompanyID)
	default:
		return nil
	}
}

func (r *Resolver) authorizeApplication(ctx context.Context, callerID, appID string) error {
	app, err := r.dir.GetApplication(ctx, appID)
	if err != nil {
		return domain.Wrap(domain.CodeAccessDenied, "application not accessible", err)
	}
	if app.CandidateID == callerID || app.RecruiterID == callerID {
		return nil
	}
	return r.authorizeJob(ctx, callerID, app.JobID)
}

func (r *Resolver) authorizeJob(ctx context.Context, callerID, jobID string) error {
	assigned, err := r.dir.HasJobAssignment(ctx, callerID, jobID)
	if err != nil {
		return domain.Internal("job assignment lookup", err)
	}
	if assigned {
		return nil
	}
	applied, err := r.dir.HasApplicationForJob(ctx, callerID, jobID)
	if err != nil {
		return domain.Internal("application lookup", err)
	}
	if applied {
		return nil
	}
	job, err := r.dir.GetJob(ctx, jobID)
	if err != nil {
		return domain.Wrap(domain.CodeAccessDenied, "job not accessible", err)
	}
	member, err := r.dir.IsOrgMember(ctx, callerID, job.OrganizationID)
	if err != nil {
		return domain.Internal("org membership lookup", err)
	}
	if member {
		return nil
	}
	return domain.AccessDenied("no relationship to this job")
}

func (r *Resolver) authorizeCompany(ctx context.Context, callerID, companyID string) error {
	company, err := r.dir.GetCompany(ctx, companyID)
	if err != nil {
		return domain.Wrap(domain.CodeAccessDenied, "company not accessible", err)
	}
	member, err := r.dir.IsOrgMember(ctx, callerID, company.OrganizationID)
	if err != nil {
		return domain.Internal("org membership lookup", err)
	}
	if !member {
		return domain.AccessDenied("not a member of the company's organization")
	}
	return nil
}

// Route substitutes the representing recruiter as the effective counterpart
// when the target candidate sits under an active relationship AND an
// unexpired sourcing-protection window, and the recruiter is not the caller
// themselves. Anything missing or expired means no substitution.
func (r *Resolver) Route(ctx context.Context, callerID, targetID string) (Routing, error) {
	direct := Routing{Routed: false, EffectiveID: targetID}

	rep, err := r.dir.ActiveRepresentation(ctx, targetID)
	if err != nil {
		// Routing is best-effort on top of access control; a directory
		// hiccup falls back to the literal target.
		r.log.Warnw("representation lookup failed", "target", targetID, "err", err)
		return direct, nil
	}
	if rep == nil {
		return direct, nil
	}
	now := time.Now().UTC()
	if rep.RelationshipEndDate != nil && !rep.RelationshipEndDate.After(now) {
		return direct, nil
	}
	if !rep.ProtectionExpiresAt.After(now) {
		return direct, nil
	}
	if rep.RecruiterID == callerID {
		return direct, nil
	}
	return Routing{
		Routed:      true,
		EffectiveID: rep.RecruiterID,
		SystemMessage: fmt.Sprintf(
			"This conversation has been routed to %s, who represents %s.",
			rep.RecruiterName, rep.CandidateName,
		),
	}, nil
}

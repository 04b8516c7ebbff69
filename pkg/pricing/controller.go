package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// PricingController owns the pricing-job queue and drives one pricing
// loop call (§4.4, §5): it schedules (prob, solver) jobs across chunks,
// runs a worker pool over the priority queue, feeds results into the
// price store, and computes the joint Lagrangian bound.
type PricingController struct {
	cfg      *Config
	master   MasterSolver
	decomp   Decomposition
	solvers  *SolverRegistry
	coefFunc MasterCoefFunc

	probs []*PricingProb
	jobs  []*PricingJob

	pq           *PriorityQueue[*PricingJob]
	currentChunk int
	startChunk   int
	chunks       [][]*PricingJob

	pricingType PricingType
	eagerAge    int

	colpool    *Colpool
	priceStore *PriceStore
	stabilizer *Stabilizer
	stats      Stats
	branchCtx  BranchingContext

	// priceStoreLock serialises price-store hash/array mutation across
	// worker goroutines (§5: priceStoreLock).
	priceStoreLock sync.Mutex

	logger klog.Logger
}

// NewPricingController builds a controller for every relevant block of
// decomp, with one PricingJob per (prob, enabled solver) pair, chunked
// per cfg.ChunkSize.
func NewPricingController(decomp Decomposition, master MasterSolver, solvers *SolverRegistry, coefFunc MasterCoefFunc, cfg *Config, stats Stats, logger klog.Logger) (*PricingController, error) {
	if decomp == nil || master == nil || solvers == nil || cfg == nil || coefFunc == nil {
		return nil, errInvalidConfiguration("NewPricingController", fmt.Errorf("nil collaborator"))
	}
	if stats == nil {
		stats = NoopStats{}
	}

	colpool, err := NewColpool(
		cfg.MaxVarsRound*decomp.NBlocks()*cfg.ColpoolSizeMultiplier,
		cfg.MaxVarsRound*decomp.NBlocks()*cfg.ColpoolSizeMultiplier*2,
		cfg.ColpoolAgeLimit,
		logger,
	)
	if err != nil {
		return nil, err
	}

	c := &PricingController{
		cfg:         cfg,
		master:      master,
		decomp:      decomp,
		solvers:     solvers,
		coefFunc:    coefFunc,
		colpool:     colpool,
		priceStore:  NewPriceStore(decomp.NBlocks(), cfg, logger),
		stabilizer:  NewStabilizer(cfg.Stabilization, cfg.MispriceLimit, logger),
		stats:       stats,
		pricingType: ReducedCostPricing{},
		logger:      logger.WithValues("component", "pricingcontroller"),
	}

	for b := 0; b < decomp.NBlocks(); b++ {
		if !decomp.IsRelevant(b) {
			continue
		}
		prob := NewPricingProb(b, decomp.SubProblem(b), cfg.NRoundsCol)
		c.probs = append(c.probs, prob)
		for s := 0; s < solvers.Len(); s++ {
			solver := solvers.At(s)
			if !solver.HeurEnabled() && !solver.ExactEnabled() {
				continue
			}
			c.jobs = append(c.jobs, NewPricingJob(prob, s, 0, cfg.UseHeurPricing && solver.HeurEnabled()))
		}
	}

	c.assignChunks()
	c.pq = NewPriorityQueue(c.jobLess)
	return c, nil
}

func (c *PricingController) jobLess(a, b *PricingJob) bool {
	return ComparePricingJobs(a, b, c.solvers.Priority)
}

// SetBranchingContext wires the active B&B node's branching stack,
// consumed by runJob to replay generic-branching bound changes before
// each solve (§6 BranchingContext, §9 supplement: generic-branching
// replay). A nil context disables the replay (root node, no generic
// branching).
func (c *PricingController) SetBranchingContext(ctx BranchingContext) {
	c.branchCtx = ctx
}

// assignChunks partitions c.jobs into chunks of cfg.ChunkSize jobs each
// (a chunk size of 0 means a single chunk containing every job), §4.4
// "Scheduling".
func (c *PricingController) assignChunks() {
	size := c.cfg.ChunkSize
	if size <= 0 || size >= len(c.jobs) {
		c.chunks = [][]*PricingJob{c.jobs}
		for _, j := range c.jobs {
			j.Chunk = 0
		}
		return
	}
	c.chunks = nil
	for i := 0; i < len(c.jobs); i += size {
		end := i + size
		if end > len(c.jobs) {
			end = len(c.jobs)
		}
		chunkIdx := len(c.chunks)
		for _, j := range c.jobs[i:end] {
			j.Chunk = chunkIdx
		}
		c.chunks = append(c.chunks, c.jobs[i:end])
	}
}

// resetEagerAge clears the forced-full-sweep counter, called from
// RunRound at the end of a round that ran the forced full sweep
// (§9 supplement: resetEagerage).
func (c *PricingController) resetEagerAge() { c.eagerAge = 0 }

// increaseEagerAge advances the forced-full-sweep counter, called from
// initPricing ahead of every round (§9 supplement: increaseEagerage).
func (c *PricingController) increaseEagerAge() { c.eagerAge++ }

// eagerSweepDue reports whether this round must enqueue every prob
// regardless of relmaxsuccessfulprobs (§4.4 Escalation, §8 scenario 5).
func (c *PricingController) eagerSweepDue() bool {
	return c.cfg.EagerFreq > 0 && c.eagerAge >= c.cfg.EagerFreq
}

// earlyAbortReady reports whether the round may stop cycling through
// further chunks: enough improving columns have been found overall, and
// a sufficient fraction of probs have already finished (§4.4 Escalation).
// Farkas pricing never aborts early, since a single unexplored block
// could hold the infeasibility certificate.
func (c *PricingController) earlyAbortReady() bool {
	if len(c.probs) == 0 {
		return false
	}
	if c.pricingType != nil && !c.pricingType.CanAbort() {
		return false
	}
	done, nImp := 0, 0
	for _, p := range c.probs {
		if p.IsDone() {
			done++
		}
		nImp += p.NImpCols
	}
	frac := float64(done) / float64(len(c.probs))
	return nImp >= c.cfg.MaxVarsRound && frac >= c.cfg.RelMaxSuccessfulProbs
}

// initPricing resets per-prob round state and advances the eager-sweep
// counter ahead of a new pricing call (§4.4 step 1).
func (c *PricingController) initPricing(pt PricingType) {
	c.pricingType = pt
	c.increaseEagerAge()
	for _, p := range c.probs {
		p.ResetRound()
	}
}

// updateSolvers pushes this round's master duals into every (block,
// solver) pair with a scheduled job, ahead of dispatch, so a backend
// that caches its subproblem objective can patch it incrementally
// instead of rebuilding from scratch (§4.6 update).
func (c *PricingController) updateSolvers(ctx context.Context) error {
	consDuals := make(map[int]float64)
	for _, oc := range c.master.OrigConss() {
		consDuals[oc] = c.master.ConsDual(oc)
	}
	cutDuals := make(map[int]float64)
	for _, r := range c.master.MasterCuts() {
		cutDuals[r] = c.master.CutDual(r)
	}

	type pair struct{ block, solverIdx int }
	seen := make(map[pair]bool)
	for _, job := range c.jobs {
		key := pair{job.Prob.Block, job.SolverIdx}
		if seen[key] {
			continue
		}
		seen[key] = true
		solver := c.solvers.At(job.SolverIdx)
		changes := DualChanges{Block: job.Prob.Block, ConsDuals: consDuals, CutDuals: cutDuals}
		if err := solver.Update(ctx, changes); err != nil {
			return errUnrecoverable("updateSolvers", err)
		}
	}
	return nil
}

// checkNextChunk rotates to the next chunk, wrapping modulo the chunk
// count, and reports whether it has circled back to startChunk
// (§4.4 "Scheduling").
func (c *PricingController) checkNextChunk() bool {
	c.currentChunk = (c.currentChunk + 1) % len(c.chunks)
	return c.currentChunk != c.startChunk
}

// currentNodeNr reads the active branch-and-bound node from the
// controller's branching context, defaulting to the root when none has
// been wired in yet (SetBranchingContext not yet called).
func (c *PricingController) currentNodeNr() int {
	if c.branchCtx == nil {
		return 0
	}
	return c.branchCtx.CurrentNodeNr()
}

// dualOfConvexity adapts the controller's master collaborator into a
// DualOfConvexity callback for ScoreJob's 'd' strategy.
func (c *PricingController) dualOfConvexity(block int) float64 {
	return c.master.ConsDual(c.decomp.ConvexityCons(block))
}

// setupPriorityQueue enqueues every not-done job in the current chunk,
// scoring it with the active sorting strategy (§4.4 step 2d). When an
// eager sweep is due, every job is enqueued regardless of chunk,
// overriding the usual chunk partitioning (§4.4 Escalation, §8 scenario 5).
func (c *PricingController) setupPriorityQueue() {
	c.pq.Clear()
	jobs := c.chunks[c.currentChunk]
	if c.eagerSweepDue() {
		jobs = c.jobs
	}
	for _, job := range jobs {
		if job.Prob.IsDone() {
			continue
		}
		job.Score = ScoreJob(job, c.cfg, c.dualOfConvexity)
		c.pq.Push(job)
	}
}

// getNextPricingJob pops the queue, skipping jobs whose prob is already
// done (§4.4 "Pricing-job execution").
func (c *PricingController) getNextPricingJob() (*PricingJob, bool) {
	for {
		job, ok := c.pq.Pop()
		if !ok {
			return nil, false
		}
		if job.Prob.IsDone() {
			continue
		}
		return job, true
	}
}

// updatePricingprob refreshes a prob's status/lowerbound/solve count
// after a solver call (§9 supplement: updatePricingprob).
func updatePricingprob(prob *PricingProb, res SolveResult) {
	prob.RecordSolve(res.Status, res.Lowerbound)
}

// updatePricingjobSolvingStats refreshes a job's heuristic-iteration
// count and solver-changed flag after a solve (§9 supplement:
// updatePricingjobSolvingStats).
func updatePricingjobSolvingStats(job *PricingJob, ranHeuristic bool) {
	if ranHeuristic {
		job.NHeurIters++
	} else {
		job.SolverChanged = job.Heuristic
		job.Heuristic = false
	}
}

// evaluatePricingjob decides whether job should be requeued after a
// solve: heuristic jobs are escalated (more iterations, or promotion to
// exact) as long as the prob is not done; exact jobs never requeue
// within the same round (§4.4 "Pricing-job execution").
func (c *PricingController) evaluatePricingjob(job *PricingJob) bool {
	if job.Prob.IsDone() {
		return false
	}
	if !job.Heuristic {
		return false
	}
	solver := c.solvers.At(job.SolverIdx)
	if job.NHeurIters < c.cfg.HeurPricingIters {
		return true
	}
	if solver.ExactEnabled() {
		updatePricingjobSolvingStats(job, false)
		return true
	}
	return false
}

// jobTimeBudget computes the per-job time limit from the remaining
// master time budget and cfg.JobTimeLimit (§4.4, §5 "Cancellation").
func (c *PricingController) jobTimeBudget(remaining time.Duration) time.Duration {
	limit := time.Duration(c.cfg.JobTimeLimit * float64(time.Second))
	if remaining > 0 && remaining < limit {
		return remaining
	}
	return limit
}

// runJob executes one pricing job against its solver, wires the
// resulting columns into the price store (synchronised by
// priceStoreLock), and updates the prob's and job's bookkeeping. It
// returns the number of improving columns this job produced.
func (c *PricingController) runJob(ctx context.Context, job *PricingJob, remaining time.Duration, dualObj []float64) (int, error) {
	prob := job.Prob
	solver := c.solvers.At(job.SolverIdx)

	budget := c.jobTimeBudget(remaining)
	jobCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if _, err := prob.ApplyBranchingStack(c.branchCtx); err != nil {
		return 0, err
	}
	defer prob.UndoBranchingStack()

	dualConv := c.dualOfConvexity(prob.Block)

	var err error
	var res SolveResult
	if job.Heuristic {
		res, err = solver.SolveHeur(jobCtx, prob, dualConv, c.cfg.HeurPricingIters)
	} else {
		res, err = solver.SolveExact(jobCtx, prob, dualConv)
	}
	if err != nil {
		return 0, errUnrecoverable("runJob.solve", err)
	}

	updatePricingprob(prob, res)
	updatePricingjobSolvingStats(job, job.Heuristic)

	nImproving := 0
	c.priceStoreLock.Lock()
	for _, sol := range res.Columns {
		redcost := c.computeRedcost(prob.Block, sol, dualObj)
		col, cerr := FromSolution(prob, sol, redcost, c.coefFunc)
		if cerr != nil {
			c.priceStoreLock.Unlock()
			return nImproving, cerr
		}
		forced := c.priceStore.IsForceCols()
		if _, aerr := c.priceStore.AddCol(col, forced, dualObj); aerr != nil {
			c.priceStoreLock.Unlock()
			return nImproving, aerr
		}
		if redcost < -epsilon {
			nImproving++
			prob.RecordImprovingColumn(col)
		}
	}
	c.priceStoreLock.Unlock()

	return nImproving, nil
}

// computeRedcost derives a column's reduced cost from the solver's
// reported solution value and the (possibly smoothed) dual vector
// supplied by the caller for this round.
func (c *PricingController) computeRedcost(block int, sol SolverSolution, dualObj []float64) float64 {
	cost := 0.0
	for i, v := range sol.Vals {
		orig := sol.Vars[i]
		if orig < len(dualObj) {
			cost -= dualObj[orig] * v
		}
	}
	return cost
}

// RunRoundOptions configures one call to RunRound.
type RunRoundOptions struct {
	PricingType   PricingType
	DualObjective []float64 // pricing-objective dual per original pricing var, already smoothed if applicable
	RemainingTime time.Duration
	UseColpool    bool
}

// RunRound executes one full pricing loop call (§4.4 "Pricing loop"):
// it resets round state, sweeps chunks through a worker pool until
// columns are found (or every chunk is exhausted), updates the
// stabiliser, applies the price store, and tops up from the colpool.
// It returns the columns actually applied to the master and the joint
// Lagrangian bound computed from the round (validity reported
// separately).
func (c *PricingController) RunRound(ctx context.Context, opts RunRoundOptions) (applied []*Column, bound float64, boundValid bool, err error) {
	c.initPricing(opts.PricingType)
	nodeNr := c.currentNodeNr()
	c.stabilizer.UpdateNode(nodeNr)
	c.colpool.UpdateNode(nodeNr)
	stabilized := c.stabilizer.IsStabilized()

	if _, farkas := opts.PricingType.(FarkasPricing); farkas {
		c.priceStore.StartFarkas()
		defer c.priceStore.EndFarkas()
	}

	if err := c.updateSolvers(ctx); err != nil {
		return nil, 0, false, err
	}

	numWorkers := 4
	anyColumnsFound := false
	c.startChunk = c.currentChunk
	totalFound, totalJobsRun := 0, 0

	for {
		c.setupPriorityQueue()

		workChan := make(chan *PricingJob, len(c.chunks[c.currentChunk]))
		wg := &sync.WaitGroup{}
		// live counts jobs still outstanding, originally queued or
		// requeued by evaluatePricingjob; workChan is only closed once it
		// reaches zero, so a worker's requeue send never races a close.
		var live sync.WaitGroup
		var foundThisChunk, jobsRunThisChunk int
		var foundMu sync.Mutex
		var firstErr error
		var errMu sync.Mutex

		for w := 0; w < numWorkers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for job := range workChan {
					n, jerr := c.runJob(ctx, job, opts.RemainingTime, opts.DualObjective)
					foundMu.Lock()
					jobsRunThisChunk++
					foundMu.Unlock()
					if jerr != nil {
						errMu.Lock()
						if firstErr == nil {
							firstErr = jerr
						}
						errMu.Unlock()
						live.Done()
						continue
					}
					if n > 0 {
						foundMu.Lock()
						foundThisChunk += n
						foundMu.Unlock()
					}
					if c.evaluatePricingjob(job) {
						live.Add(1)
						workChan <- job
					}
					live.Done()
				}
			}()
		}

		for {
			job, ok := c.getNextPricingJob()
			if !ok {
				break
			}
			live.Add(1)
			workChan <- job
		}
		go func() {
			live.Wait()
			close(workChan)
		}()
		wg.Wait()

		if firstErr != nil {
			return nil, 0, false, firstErr
		}

		totalFound += foundThisChunk
		totalJobsRun += jobsRunThisChunk
		if foundThisChunk > 0 {
			anyColumnsFound = true
		}

		bound, boundValid = c.collectResults()

		if isReducedCostMode(opts.PricingType) {
			if infeasible, ok := c.firstInfeasibleProb(); ok {
				return nil, 0, false, errInfeasible("RunRound",
					fmt.Errorf("block %d pricing subproblem is infeasible", infeasible.Block))
			}
		}

		if stabilized && isReducedCostMode(opts.PricingType) {
			c.updateStabilizerAfterRound(anyColumnsFound, bound, boundValid)
		}

		if anyColumnsFound {
			break
		}

		c.recycleGeneratedColumns()

		if !c.eagerSweepDue() && c.earlyAbortReady() {
			break
		}
		if !c.checkNextChunk() {
			break
		}
	}

	for _, p := range c.probs {
		p.EndRound()
	}

	applied, err = c.priceStore.ApplyCols(c.master, c.colpool, opts.UseColpool)
	if err != nil {
		return nil, bound, boundValid, err
	}
	applied = append(applied, c.priceColumnPool(opts.UseColpool)...)

	if c.eagerSweepDue() {
		c.resetEagerAge()
	}
	if derr := c.colpool.DeleteOldColumns(); derr != nil {
		return applied, bound, boundValid, derr
	}

	c.stats.RecordRound(RoundStats{
		NodeNr:       nodeNr,
		Round:        c.stabilizer.Iteration(),
		NJobsRun:     totalJobsRun,
		NColsFound:   totalFound,
		NColsApplied: len(applied),
		BestRedcost:  c.bestRedcost(),
		LagrangianLB: bound,
		BoundValid:   boundValid,
		Alpha:        c.stabilizer.CurrentAlpha(),
		InMispricing: c.stabilizer.InMispricing(),
		PricingType:  opts.PricingType.Name(),
	})
	c.stabilizer.AdvanceIteration()

	return applied, bound, boundValid, nil
}

func isReducedCostMode(pt PricingType) bool {
	_, ok := pt.(ReducedCostPricing)
	return ok
}

// updateStabilizerAfterRound feeds the round's outcome into the
// stabiliser per §4.4 step 2g / §4.5.
func (c *PricingController) updateStabilizerAfterRound(columnAdded bool, bound float64, boundValid bool) {
	if boundValid {
		c.stabilizer.UpdateStabilityCenter(bound, DualVector{})
	}
	if !columnAdded && boundValid && bound >= -epsilon {
		c.stabilizer.UpdateAlphaMisprice()
		return
	}
	if columnAdded {
		g := c.subgradient()
		c.stabilizer.UpdateAlpha(g)
	}
}

// subgradient sums each relevant prob's best-column subgradient
// contribution for the Wentges update (§4.5.b). A prob contributes 0
// when it found no improving column this round.
func (c *PricingController) subgradient() float64 {
	var g float64
	for _, p := range c.probs {
		best := p.BestCol()
		if best == nil {
			continue
		}
		g += -best.Redcost()
	}
	return g
}

// collectResults computes the joint Lagrangian bound (§4.4 "Joint
// Lagrangian bound"): bound_b = n_b * lb_b summed over relevant blocks,
// each standing in for its identical siblings. Validity requires every
// solved prob to have reached Optimal and that we are not beneath a
// generic branching node: no active branching constraint, nor any of its
// ancestors, is a generic-branching one, and no prob holds a branch stack.
func (c *PricingController) collectResults() (bound float64, valid bool) {
	valid = true
	if c.branchCtx != nil {
		for _, cons := range c.branchCtx.ActiveCons() {
			for x := cons; x != -1; x = c.branchCtx.ParentOf(x) {
				if c.branchCtx.IsGenericBranching(x) {
					valid = false
				}
			}
		}
	}
	for _, p := range c.probs {
		n := c.decomp.NIdenticalBlocks(p.Block)
		bound += float64(n) * p.Lowerbound
		if p.Status != StatusOptimal {
			valid = false
		}
		if p.BranchStackDepth() > 0 {
			valid = false
		}
	}
	return bound, valid
}

// firstInfeasibleProb returns the first prob whose last solve proved its
// subproblem infeasible, if any. In reduced-cost pricing this propagates
// to abort the round and flag the master infeasible (§9 errors); Farkas
// pricing is exempt by construction, since RunRound only calls this
// under isReducedCostMode, leaving Farkas free to search for a
// contradicting improving column instead.
func (c *PricingController) firstInfeasibleProb() (*PricingProb, bool) {
	for _, p := range c.probs {
		if p.Status == StatusInfeasible {
			return p, true
		}
	}
	return nil, false
}

// recycleGeneratedColumns moves every staged-but-unapplied column into
// the colpool when a round produces nothing to apply (§4.4 step 2h).
func (c *PricingController) recycleGeneratedColumns() {
	for b := 0; b < c.decomp.NBlocks(); b++ {
		for _, sc := range c.priceStore.cols[b] {
			c.colpool.AddCol(sc.col)
		}
	}
	c.priceStore.clearRound()
}

// priceColumnPool tops up the master from the colpool after applyCols,
// taking columns until the per-prob/per-round caps are reached
// (§4.4 step 3 "priceColumnPool").
func (c *PricingController) priceColumnPool(useColpool bool) []*Column {
	if !useColpool {
		return nil
	}
	var taken []*Column
	perProb := make(map[int]int)
	for len(taken) < c.cfg.MaxColsPerRound {
		col, ok := c.colpool.PeekBest()
		if !ok || col.Redcost() >= -epsilon {
			break
		}
		if perProb[col.Block] >= c.cfg.MaxColsPerProb {
			break
		}
		col, _ = c.colpool.TakeBest()
		c.priceStore.StartForceCols()
		c.priceStore.AddCol(col, true, nil)
		c.priceStore.EndForceCols()
		taken = append(taken, col)
		perProb[col.Block]++
	}
	if len(taken) == 0 {
		return nil
	}
	applied, err := c.priceStore.ApplyCols(c.master, c.colpool, useColpool)
	if err != nil {
		c.logger.Error(err, "priceColumnPool: failed to apply pool columns")
		return nil
	}
	return applied
}

// getBestCols returns the best column found this round for every prob
// that found one, in block order (§9 supplement: getBestCols).
func (c *PricingController) getBestCols() []*Column {
	var cols []*Column
	for _, p := range c.probs {
		if best := p.BestCol(); best != nil {
			cols = append(cols, best)
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Block < cols[j].Block })
	return cols
}

// bestRedcost returns the most negative reduced cost found by any prob
// this round, or 0 if none found an improving column, for round-level
// statistics reporting.
func (c *PricingController) bestRedcost() float64 {
	best := 0.0
	for _, p := range c.probs {
		if col := p.BestCol(); col != nil && col.Redcost() < best {
			best = col.Redcost()
		}
	}
	return best
}

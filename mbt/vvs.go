package mbt

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Convergence tolerance on the change of the weighted residual sum between
// two iterations.
const vvsConvergenceEps = 1e-8

// Singular values of JᵗJ below this bound are truncated in the
// pseudo-inverse, so rank-deficient systems (fewer than 6 effective
// constraints) damp the unobservable directions instead of failing.
const vvsSingularEps = 1e-16

// ComputeVVS runs the virtual-visual-servoing solve: stacks the residuals
// and interaction matrices of every usable face, applies Tukey M-estimation
// and iterates a damped Gauss-Newton update of the incremental transform
// until the weighted residual sum stabilizes or the iteration cap is hit
// (hitting the cap is not an error; the last estimate is accepted).
//
// Returns the final per-row weight vector, laid out per face in the order
// recorded for PostTracking. Faces whose plane is degenerate under the
// current transform are excluded from the solve without aborting the frame.
func (tracker *KltTracker) ComputeVVS() ([]float64, error) {
	tracker.solvedFaces = tracker.solvedFaces[:0]
	tracker.solvedCounts = tracker.solvedCounts[:0]
	total := 0
	for _, face := range tracker.faces {
		if !face.GetIsTracked() || !face.HasEnoughPoints() {
			continue
		}
		if _, err := face.ComputeHomography(tracker.incremental); err != nil {
			tracker.logger.Warnf("face %d excluded from solve: %v", face.GetIndex(), err)
			continue
		}
		tracker.solvedFaces = append(tracker.solvedFaces, face)
		tracker.solvedCounts = append(tracker.solvedCounts, face.GetNbPointsCur())
		total += face.GetNbPointsCur()
	}
	if total < minTotalPoints || len(tracker.solvedFaces) == 0 {
		return nil, errors.Wrapf(ErrInsufficientData, "%d points on %d usable faces", total, len(tracker.solvedFaces))
	}

	rows := 2 * total
	jacobian := mat.NewDense(rows, 6, nil)
	residual := mat.NewVecDense(rows, nil)
	weights := make([]float64, rows)

	// With a fixed interaction matrix, the weighted Jacobian of the first
	// iteration is reused for every update.
	var jacobianFixed *mat.Dense
	if !tracker.cfg.ComputeInteraction {
		jacobianFixed = mat.NewDense(rows, 6, nil)
	}

	robust := NewRobust(rows)
	robust.SetThreshold(2.0 / tracker.cam.Px)

	normRes := 0.0
	normResPrev := -1.0
	for iter := 0; iter < tracker.cfg.MaxIter && math.Abs(normRes-normResPrev) > vvsConvergenceEps; iter++ {
		shift := 0
		for k, face := range tracker.solvedFaces {
			n := tracker.solvedCounts[k]
			subR := residual.SliceVec(shift, shift+2*n).(*mat.VecDense)
			subJ := jacobian.Slice(shift, shift+2*n, 0, 6).(*mat.Dense)

			ok := true
			if iter > 0 {
				if _, err := face.ComputeHomography(tracker.incremental); err != nil {
					tracker.logger.Warnf("face %d dropped out mid-solve: %v", face.GetIndex(), err)
					ok = false
				}
			}
			if ok {
				if err := face.ComputeInteractionMatrixAndResidual(subR, subJ); err != nil {
					tracker.logger.Warnf("face %d dropped out mid-solve: %v", face.GetIndex(), err)
					ok = false
				}
			}
			if !ok {
				// Keep the weight layout intact: the face simply stops
				// contributing to this iteration's update.
				zeroBlock(subR, subJ)
			}
			shift += 2 * n
		}

		if iter == 0 {
			for i := range weights {
				weights[i] = 1
			}
		}
		robust.SetIteration(iter)
		robust.MEstimatorTukey(residual.RawVector().Data, weights)

		// Sum of magnitudes: a signed sum can cancel on symmetric scenes and
		// stop the iteration early.
		normResPrev = normRes
		normRes = 0
		for i := 0; i < rows; i++ {
			r := residual.AtVec(i) * weights[i]
			residual.SetVec(i, r)
			normRes += math.Abs(r)
		}

		if iter == 0 || tracker.cfg.ComputeInteraction {
			for i := 0; i < rows; i++ {
				for j := 0; j < 6; j++ {
					jacobian.Set(i, j, jacobian.At(i, j)*weights[i])
				}
			}
			if jacobianFixed != nil {
				jacobianFixed.Copy(jacobian)
			}
		} else {
			jacobian.Copy(jacobianFixed)
		}

		velocity, err := solveWeightedNormalEquations(jacobian, residual, tracker.cfg.Lambda)
		if err != nil {
			return weights, errors.Wrap(err, "vvs solve failed")
		}
		tracker.incremental = ExpMap(velocity).Inverse().Compose(tracker.incremental)
	}

	tracker.currentPose = tracker.incremental.Compose(tracker.referencePose)
	return weights, nil
}

func zeroBlock(residual *mat.VecDense, jacobian *mat.Dense) {
	for i := 0; i < residual.Len(); i++ {
		residual.SetVec(i, 0)
		for j := 0; j < 6; j++ {
			jacobian.Set(i, j, 0)
		}
	}
}

// solveWeightedNormalEquations computes v = -λ·pinv(JᵗJ)·JᵗR with a
// truncated-SVD pseudo-inverse.
func solveWeightedNormalEquations(jacobian *mat.Dense, residual *mat.VecDense, lambda float64) (Twist, error) {
	var jtj mat.Dense
	jtj.Mul(jacobian.T(), jacobian)
	var jtr mat.VecDense
	jtr.MulVec(jacobian.T(), residual)

	var svd mat.SVD
	if ok := svd.Factorize(&jtj, mat.SVDFull); !ok {
		return Twist{}, errors.New("failed to factorize normal equations")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	// pinv(JᵗJ)·JᵗR = V · diag(1/σ) · Uᵗ · JᵗR, truncating small σ.
	var ut mat.VecDense
	ut.MulVec(u.T(), &jtr)
	scaled := mat.NewVecDense(6, nil)
	for i, sv := range values {
		if sv > vvsSingularEps {
			scaled.SetVec(i, ut.AtVec(i)/sv)
		}
	}
	var solution mat.VecDense
	solution.MulVec(&v, scaled)

	var velocity Twist
	for i := 0; i < 6; i++ {
		velocity[i] = -lambda * solution.AtVec(i)
	}
	return velocity, nil
}

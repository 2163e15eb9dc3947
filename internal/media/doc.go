// Package media turns source photos into fixed-size thumbnails.
//
// A thumbnail is produced in four steps:
//
//   - [ResolveOrientation] reads the EXIF orientation tag, defaulting to 1.
//   - [OrientationMode.Correct] rotates (and in full mode flips) the decoded
//     pixels so that the crop is planned on the image as displayed.
//   - [PlanCrop] picks the largest centered region with the target aspect
//     ratio.
//   - The region is resized with a Lanczos filter to exactly the [Spec] size
//     and encoded in the format implied by the destination extension.
//
// [Transformer] runs the steps for one file; [Scan] lists the eligible files
// in a directory. Decoding goes through a [Decoder]: the pure Go
// [ImagingDecoder] by default, or [VipsDecoder] after [InitVips].
package media
